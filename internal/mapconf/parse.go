package mapconf

import (
	"bufio"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// ScaleBand colors utilization percentages in [Low, High].
type ScaleBand struct {
	Low   float64
	High  float64
	Color color.RGBA
}

// Scale is an ordered piecewise color ramp.
type Scale []ScaleBand

// ColorFor returns the color of the first band containing pct, or gray
// when no band matches.
func (s Scale) ColorFor(pct float64) color.RGBA {
	for _, band := range s {
		if pct >= band.Low && pct <= band.High {
			return band.Color
		}
	}
	return color.RGBA{R: 128, G: 128, B: 128, A: 255}
}

// Node is a positioned endpoint on the map.
type Node struct {
	Name string
	X    int
	Y    int
}

// Link joins two named nodes.
type Link struct {
	Name      string
	From      string
	To        string
	Width     int
	BWLabel   string
	Bandwidth string
}

// Map is a parsed weathermap configuration.
type Map struct {
	Background string
	Width      int
	Height     int
	Title      string
	Scales     map[string]Scale
	Nodes      map[string]Node
	Links      []Link
}

// DefaultScaleName is the scale applied to links that do not name one.
const DefaultScaleName = "DEFAULT"

// Parse reads the weathermap dialect: top-level directives, SCALE bands,
// and indented NODE / LINK blocks. Unknown directives are skipped; a block
// named DEFAULT contributes defaults for subsequent blocks instead of an
// entry of its own.
func Parse(text string) (*Map, error) {
	m := &Map{
		Scales: make(map[string]Scale),
		Nodes:  make(map[string]Node),
	}

	var (
		curNode      *Node
		curLink      *Link
		linkDefaults Link
	)
	closeBlock := func() {
		if curNode != nil && curNode.Name != "DEFAULT" {
			m.Nodes[curNode.Name] = *curNode
		}
		if curLink != nil {
			if curLink.Name == "DEFAULT" {
				linkDefaults = *curLink
			} else if curLink.From != "" && curLink.To != "" {
				m.Links = append(m.Links, *curLink)
			}
		}
		curNode = nil
		curLink = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		indented := raw[0] == ' ' || raw[0] == '\t'
		fields := strings.Fields(trimmed)
		keyword := fields[0]
		args := fields[1:]

		if indented && (curNode != nil || curLink != nil) {
			if err := parseBlockLine(curNode, curLink, keyword, args); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}
		closeBlock()

		switch keyword {
		case "BACKGROUND":
			if len(args) > 0 {
				m.Background = args[0]
			}
		case "WIDTH":
			m.Width = atoiOrZero(args)
		case "HEIGHT":
			m.Height = atoiOrZero(args)
		case "TITLE":
			m.Title = strings.Join(args, " ")
		case "SCALE":
			if err := parseScale(m, args); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case "NODE":
			if len(args) == 0 {
				return nil, fmt.Errorf("line %d: NODE requires a name", lineNo)
			}
			curNode = &Node{Name: args[0]}
		case "LINK":
			if len(args) == 0 {
				return nil, fmt.Errorf("line %d: LINK requires a name", lineNo)
			}
			l := linkDefaults
			l.Name = args[0]
			l.From, l.To = "", ""
			curLink = &l
		default:
			// KEYTEXTCOLOR, SET and friends are render hints this
			// implementation does not use
		}
	}
	closeBlock()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan config: %w", err)
	}
	return m, nil
}

func parseBlockLine(node *Node, link *Link, keyword string, args []string) error {
	switch {
	case node != nil && keyword == "POSITION":
		if len(args) < 2 {
			return fmt.Errorf("POSITION requires x and y")
		}
		x, errX := strconv.Atoi(args[0])
		y, errY := strconv.Atoi(args[1])
		if errX != nil || errY != nil {
			return fmt.Errorf("POSITION coordinates must be integers: %v %v", args[0], args[1])
		}
		node.X, node.Y = x, y
	case link != nil && keyword == "NODES":
		if len(args) < 2 {
			return fmt.Errorf("NODES requires two node names")
		}
		link.From, link.To = args[0], args[1]
	case link != nil && keyword == "WIDTH":
		link.Width = atoiOrZero(args)
	case link != nil && keyword == "BWLABEL":
		link.BWLabel = strings.Join(args, " ")
	case link != nil && keyword == "BANDWIDTH":
		if len(args) > 0 {
			link.Bandwidth = args[0]
		}
	default:
		// DEVICE, INTERFACE and other annotations carry no pixels
	}
	return nil
}

func parseScale(m *Map, args []string) error {
	if len(args) < 6 {
		return fmt.Errorf("SCALE requires name, low, high, r, g, b")
	}
	name := args[0]
	low, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("SCALE low: %w", err)
	}
	high, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("SCALE high: %w", err)
	}
	rgb := [3]uint8{}
	for i := 0; i < 3; i++ {
		v, err := strconv.Atoi(args[3+i])
		if err != nil || v < 0 || v > 255 {
			return fmt.Errorf("SCALE color component out of range: %s", args[3+i])
		}
		rgb[i] = uint8(v)
	}
	m.Scales[name] = append(m.Scales[name], ScaleBand{
		Low:  low,
		High: high,
		Color: color.RGBA{
			R: rgb[0],
			G: rgb[1],
			B: rgb[2],
			A: 255,
		},
	})
	return nil
}

func atoiOrZero(args []string) int {
	if len(args) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(args[0])
	return n
}
