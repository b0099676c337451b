package lifecycle

import (
	"encoding/json"
	"os"
)

// LoadParamFile reads a previously persisted parameter file (the same
// format params.Store.persist writes) for use as Config.InitialParams.
// It is the external parameter JSON loader spec §1 calls out of scope for
// the Parameter Store itself; the composition root owns it instead. A
// missing file is not an error — it means this is the process's first run
// and every group starts empty, same as params.New's zero-initial case.
func LoadParamFile(path string) (map[string]map[string]interface{}, error) {
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var groups map[string]map[string]interface{}
	if err := json.Unmarshal(buf, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
