// Package render binds variable contexts to catalog templates.
//
// Templates use Go text/template syntax with the hermetic subset of the sprig
// function library, so a snippet reads like:
//
//	{
//	  "tgt": "{{ .minion }}",
//	  "fun": "state.apply",
//	  "arg": ["{{ .state | default "vfw" }}"]
//	}
//
// Before execution the parse tree is inspected and every field the template
// reads from the context is checked. A missing variable stops rendering with a
// MissingVariableError naming it, instead of producing a half-filled payload.
// Fields that are only tested, as the value handed to default or as a bare if
// condition, are allowed to be absent.
//
// Rendering is deterministic: functions depending on time, randomness or the
// environment are not available.
package render
