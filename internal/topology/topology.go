// Package topology answers device and neighbor queries for the network the
// maps describe. The shipped provider serves a seeded table; a production
// deployment would back it with SNMP/CDP collection.
package topology

import "context"

// Device identifies one network element.
type Device struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Type     string `json:"type"`
	Model    string `json:"model"`
}

// Neighbor is one adjacency as seen from a device interface.
type Neighbor struct {
	Interface   string `json:"interface"`
	Hostname    string `json:"hostname"`
	IP          string `json:"ip"`
	Description string `json:"description"`
	Bandwidth   string `json:"bandwidth"`
}

// Provider answers topology queries. Lookups honor context cancellation so
// a slow backing collector does not pin handler goroutines.
type Provider struct {
	devices    map[string]Device
	neighbors  map[string][]Neighbor
	scanExtras map[string][]Neighbor
}

// NewProvider returns a provider seeded with the reference network.
func NewProvider() *Provider {
	devices := map[string]Device{
		"10.10.1.3":    {Hostname: "Core-Router-1", Type: "Router", Model: "Cisco CSR1000V"},
		"10.10.1.2":    {Hostname: "Dist-Switch-A", Type: "Switch", Model: "Cisco C9300"},
		"10.10.2.2":    {Hostname: "Dist-Switch-B", Type: "Switch", Model: "Cisco C9300"},
		"192.168.1.10": {Hostname: "Access-SW-A1", Type: "Switch", Model: "Cisco C3560"},
		"192.168.1.20": {Hostname: "Access-SW-A2", Type: "Switch", Model: "Cisco C3560"},
		"192.168.2.10": {Hostname: "Access-SW-B1", Type: "Switch", Model: "Cisco C3560"},
		"172.16.10.5":  {Hostname: "Firewall-Main", Type: "Firewall", Model: "Palo Alto PA-220"},
		"172.16.20.8":  {Hostname: "VPN-Encryptor-1", Type: "Encryptor", Model: "TACLANE-Micro"},
		"172.16.30.12": {Hostname: "Legacy-Device", Type: "Unknown Type", Model: "Custom Appliance"},
		"10.99.99.1":   {Hostname: "Shadow-IT-Router", Type: "Router", Model: "Linksys Consumer"},
		"10.99.99.50":  {Hostname: "Unmanaged-Switch-Lab", Type: "Switch", Model: "Netgear ProSafe"},
	}
	for ip, d := range devices {
		d.IP = ip
		devices[ip] = d
	}

	neighbors := map[string][]Neighbor{
		"10.10.1.3": {
			{Interface: "GigabitEthernet1", Hostname: "Dist-Switch-A", IP: "10.10.1.2", Description: "Uplink to Dist-A", Bandwidth: "10G"},
			{Interface: "GigabitEthernet2", Hostname: "Dist-Switch-B", IP: "10.10.2.2", Description: "Uplink to Dist-B", Bandwidth: "10G"},
			{Interface: "GigabitEthernet3", Hostname: "Dist-Switch-A", IP: "10.10.1.2", Description: "Redundant Uplink to Dist-A", Bandwidth: "10G"},
		},
		"10.10.1.2": {
			{Interface: "TenGigabitEthernet1/1/1", Hostname: "Core-Router-1", IP: "10.10.1.3", Description: "Uplink to Core", Bandwidth: "10G"},
			{Interface: "TenGigabitEthernet1/1/2", Hostname: "Dist-Switch-B", IP: "10.10.2.2", Description: "VRRP Link to Dist-B", Bandwidth: "10G"},
			{Interface: "GigabitEthernet2/0/2", Hostname: "Access-SW-A2", IP: "192.168.1.20", Description: "To Access-SW-A2", Bandwidth: "1G"},
		},
		"10.10.2.2": {
			{Interface: "TenGigabitEthernet1/1/1", Hostname: "Core-Router-1", IP: "10.10.1.3", Description: "Uplink to Core", Bandwidth: "10G"},
			{Interface: "GigabitEthernet2/0/1", Hostname: "Access-SW-B1", IP: "192.168.2.10", Description: "To Access-SW-B1", Bandwidth: "1G"},
			{Interface: "GigabitEthernet2/0/2", Hostname: "VPN-Encryptor-1", IP: "172.16.20.8", Description: "To Encryptor", Bandwidth: "1G"},
		},
		"192.168.1.10": {
			{Interface: "GigabitEthernet1/0/1", Hostname: "Dist-Switch-A", IP: "10.10.1.2", Description: "Uplink to Dist-A", Bandwidth: "1G"},
		},
		"192.168.2.10": {
			{Interface: "GigabitEthernet1/0/1", Hostname: "Dist-Switch-B", IP: "10.10.2.2", Description: "Uplink to Dist-B", Bandwidth: "1G"},
			{Interface: "GigabitEthernet1/0/2", Hostname: "Firewall-Main", IP: "172.16.10.5", Description: "To Firewall", Bandwidth: "1G"},
		},
		"172.16.20.8": {
			{Interface: "eth0", Hostname: "Dist-Switch-B", IP: "10.10.2.2", Description: "Uplink", Bandwidth: "1G"},
			{Interface: "eth1", Hostname: "Legacy-Device", IP: "172.16.30.12", Description: "To Legacy Device", Bandwidth: "100M"},
		},
	}

	// adjacencies only visible via the full ARP/IP scan
	scanExtras := map[string][]Neighbor{
		"10.10.1.3": {
			{Interface: "Vlan999", Hostname: "Shadow-IT-Router", IP: "10.99.99.1", Description: "ARP Entry - Unknown Router", Bandwidth: "Unknown"},
			{Interface: "Vlan999", Hostname: "Unmanaged-Switch-Lab", IP: "10.99.99.50", Description: "ARP Entry - Lab", Bandwidth: "Unknown"},
		},
	}

	return &Provider{devices: devices, neighbors: neighbors, scanExtras: scanExtras}
}

// DeviceInfo fetches device type, model, and hostname by IP address.
func (p *Provider) DeviceInfo(ctx context.Context, ip string) (Device, bool, error) {
	if err := ctx.Err(); err != nil {
		return Device{}, false, err
	}
	d, ok := p.devices[ip]
	return d, ok, nil
}

// Neighbors returns the CDP adjacencies of a device, or false when the
// device is unknown or has none.
func (p *Provider) Neighbors(ctx context.Context, ip string) ([]Neighbor, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if _, known := p.devices[ip]; !known {
		return nil, false, nil
	}
	ns, ok := p.neighbors[ip]
	if !ok {
		return nil, false, nil
	}
	return append([]Neighbor(nil), ns...), true, nil
}

// FullNeighbors returns CDP adjacencies plus ARP/IP-scan findings.
func (p *Provider) FullNeighbors(ctx context.Context, ip string) ([]Neighbor, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if _, known := p.devices[ip]; !known {
		return nil, false, nil
	}
	var out []Neighbor
	out = append(out, p.neighbors[ip]...)
	out = append(out, p.scanExtras[ip]...)
	if len(out) == 0 {
		return nil, false, nil
	}
	return out, true, nil
}
