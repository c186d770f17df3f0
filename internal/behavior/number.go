package behavior

import (
	"encoding/json"
	"math"
	"strconv"
)

// Number is a variable value on the wire. Scripts can produce NaN and the
// infinities, which JSON numbers cannot carry, so those travel as the strings
// "NaN", "+Inf" and "-Inf".
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return json.Marshal(strconv.FormatFloat(f, 'g', -1, 64))
	}
	return json.Marshal(f)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return err
		}
		*n = Number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

type changedVariableJSON struct {
	Instance int    `json:"instance"`
	Graph    int64  `json:"graph"`
	Node     int64  `json:"node"`
	Value    Number `json:"value"`
}

func (c ChangedVariable) MarshalJSON() ([]byte, error) {
	return json.Marshal(changedVariableJSON{Instance: c.Instance, Graph: c.Graph, Node: c.Node, Value: Number(c.Value)})
}

func (c *ChangedVariable) UnmarshalJSON(data []byte) error {
	var raw changedVariableJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = ChangedVariable{Instance: raw.Instance, Graph: raw.Graph, Node: raw.Node, Value: float64(raw.Value)}
	return nil
}
