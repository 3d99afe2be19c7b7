package lead

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed samples.yaml
var samplesYAML []byte

// SampleLeads returns the fixed leads used for dry runs.
func SampleLeads() ([]Lead, error) {
	var leads []Lead
	if err := yaml.Unmarshal(samplesYAML, &leads); err != nil {
		return nil, eris.Wrap(err, "lead: parse sample leads")
	}
	return leads, nil
}
