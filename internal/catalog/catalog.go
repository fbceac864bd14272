// Package catalog is the directory of Cacti installation groups a map can
// be deployed to.
package catalog

// Installation is a single Cacti host that renders maps.
type Installation struct {
	ID       int    `json:"id"`
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
}

// Group is a named set of installations addressed as one deployment target.
type Group struct {
	ID            int            `json:"id"`
	Name          string         `json:"name"`
	Installations []Installation `json:"installations"`
}

// Directory resolves group ids to their member installations. The seeded
// data is static for the lifetime of the process; reads are safe for
// concurrent use.
type Directory struct {
	groups []Group
}

// NewDirectory returns a directory seeded with the registered groups.
func NewDirectory() *Directory {
	return NewDirectoryWith([]Group{
		{
			ID:   1,
			Name: "Main-Cacti-Group",
			Installations: []Installation{
				{ID: 3, Hostname: "221.250.1.2", IP: "221.250.1.2"},
				{ID: 4, Hostname: "221.252.1.2", IP: "221.252.1.2"},
			},
		},
		{
			ID:   2,
			Name: "Legacy-Group",
			Installations: []Installation{
				{ID: 1, Hostname: "cacti-main-dc", IP: "192.168.1.100"},
				{ID: 2, Hostname: "cacti-prod-london", IP: "10.200.5.10"},
			},
		},
	})
}

// NewDirectoryWith returns a directory over the provided groups.
func NewDirectoryWith(groups []Group) *Directory {
	return &Directory{groups: groups}
}

// Groups lists every registered group.
func (d *Directory) Groups() []Group {
	out := make([]Group, len(d.groups))
	copy(out, d.groups)
	return out
}

// InstallationsByGroup returns the members of the group, or false when the
// group id is unknown.
func (d *Directory) InstallationsByGroup(id int) ([]Installation, bool) {
	for _, g := range d.groups {
		if g.ID == id {
			out := make([]Installation, len(g.Installations))
			copy(out, g.Installations)
			return out, true
		}
	}
	return nil, false
}
