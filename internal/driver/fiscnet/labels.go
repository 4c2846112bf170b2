// internal/driver/fiscnet/labels.go
package fiscnet

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Labels are the non fiscal register names the device prints on cash
// movements. They must match what was programmed into the printer.
type Labels struct {
	CashSupply  string
	CashRemoval string
}

var DefaultLabels = Labels{CashSupply: "Suprimento", CashRemoval: "Sangria"}

// LoadLabels reads the [fiscnet] section of a legacy driver config file.
// A missing file or key keeps the default for that label.
func LoadLabels(path string) (Labels, error) {
	labels := DefaultLabels
	if path == "" {
		return labels, nil
	}
	cfg, err := ini.LoadSources(ini.LoadOptions{Loose: true}, path)
	if err != nil {
		return labels, fmt.Errorf("failed to load %s: %w", path, err)
	}
	section := cfg.Section("fiscnet")
	labels.CashSupply = section.Key("cash_supply").MustString(labels.CashSupply)
	labels.CashRemoval = section.Key("cash_removal").MustString(labels.CashRemoval)
	return labels, nil
}
