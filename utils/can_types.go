package utils

import "sort"

// SignalDef describes one scaled signal packed into a CAN payload.
type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

// FrameDef groups the signals carried by one CAN identifier.
type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string // "rx" frames are consumed, "tx" frames are produced
	CycleMS   int
	Signals   []SignalDef
}

func (fd *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

// CANMap is the signal dictionary loaded from can_map.csv.
type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
