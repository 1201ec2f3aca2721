package provision

import "github.com/ruteri/snippet-provisioning-backend/interfaces"

// MergeContext builds the variable context of a request. Precedence, lowest
// first: baseline defaults, target defaults, caller values. A value already
// present is never overwritten. baseline may be nil.
func MergeContext(baseline, target *interfaces.ServiceDefinition, caller map[string]string) interfaces.VariableContext {
	vars := make(interfaces.VariableContext, len(caller))
	for k, v := range caller {
		vars[k] = v
	}

	for _, def := range []*interfaces.ServiceDefinition{target, baseline} {
		if def == nil {
			continue
		}
		for _, v := range def.Variables {
			if value, ok := v.DefaultValue(); ok {
				vars.SetDefault(v.Name, value)
			}
		}
	}
	return vars
}
