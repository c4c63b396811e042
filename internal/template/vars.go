package template

import "strings"

// Vars maps placeholder tokens to their replacement values
type Vars map[string]string

// Common placeholder tokens
const (
	User      = "__USER__"
	Host      = "__HOST__"
	Master    = "__MASTER__"
	HomeDir   = "__HOME_DIR__"
	DataDir   = "__DATA_DIR__"
	CondaRoot = "__CONDA_ROOT__"
	Port      = "__PORT__"
	Machines  = "__MACHINES__"
)

// Token turns a name such as "zookeeper_url" into "__ZOOKEEPER_URL__"
func Token(name string) string {
	return "__" + strings.ToUpper(strings.ReplaceAll(name, "-", "_")) + "__"
}

// With returns a copy of v extended with the given pairs
func (v Vars) With(pairs ...string) Vars {
	out := make(Vars, len(v)+len(pairs)/2)
	for k, val := range v {
		out[k] = val
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = pairs[i+1]
	}
	return out
}
