package lifecycle

// DisplayEnumerator lists the monitor names available to the process,
// mirroring camera.Enumerator's shape (spec §4.12 step 3: "detect
// displays, update monitor.available_displays"). There is no
// cross-platform display-enumeration library in the retrieved pack (none
// of the five example repos touch display/monitor hardware), so the
// default implementation is a configured static list rather than an OS
// query — see DESIGN.md.
type DisplayEnumerator interface {
	Enumerate() ([]string, error)
}

// staticDisplays is the default DisplayEnumerator: it reports whatever
// names were supplied at construction, standing in for a real
// xrandr/EDID-backed enumerator until one is wired for a target platform.
type staticDisplays struct {
	names []string
}

// NewStaticDisplayEnumerator returns a DisplayEnumerator that always
// reports names.
func NewStaticDisplayEnumerator(names []string) DisplayEnumerator {
	return staticDisplays{names: names}
}

func (s staticDisplays) Enumerate() ([]string, error) {
	return s.names, nil
}
