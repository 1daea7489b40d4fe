package config

import "fmt"

// Specification of requested output type.
type OutputFmt int

const (
	OutputFmtHTML OutputFmt = iota
	OutputFmtTEI
	OutputFmtAll
)

func (o OutputFmt) String() string {
	switch o {
	case OutputFmtHTML:
		return "html"
	case OutputFmtTEI:
		return "tei"
	case OutputFmtAll:
		return "all"
	default:
		return fmt.Sprintf("OutputFmt(%d)", int(o))
	}
}

// Ext returns file extension for single-format outputs.
func (o OutputFmt) Ext() string {
	switch o {
	case OutputFmtHTML:
		return ".html"
	case OutputFmtTEI:
		return ".tei.xml"
	default:
		// this should never happen
		panic("unsupported format requested")
	}
}

func ParseOutputFmt(name string) (OutputFmt, error) {
	switch name {
	case "html":
		return OutputFmtHTML, nil
	case "tei":
		return OutputFmtTEI, nil
	case "all":
		return OutputFmtAll, nil
	}
	return OutputFmtHTML, fmt.Errorf("%q is not a valid OutputFmt", name)
}

func OutputFmtNames() []string {
	return []string{"html", "tei", "all"}
}
