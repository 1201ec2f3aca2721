package render

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"sigs.k8s.io/yaml"
)

// Payload converts a rendered document into the structured value submitted to
// the control plane. Documents may be written as JSON or YAML; anything that
// is not a mapping or a sequence is rejected with interfaces.ErrInvalidPayload.
func Payload(doc Document) (json.RawMessage, error) {
	body := bytes.TrimSpace(doc.Body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s rendered empty", interfaces.ErrInvalidPayload, doc.File)
	}

	out, err := yaml.YAMLToJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", interfaces.ErrInvalidPayload, doc.File, err)
	}

	out = bytes.TrimSpace(out)
	if len(out) == 0 || (out[0] != '{' && out[0] != '[') {
		return nil, fmt.Errorf("%w: %s is not a mapping or a list", interfaces.ErrInvalidPayload, doc.File)
	}
	if !json.Valid(out) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrInvalidPayload, doc.File)
	}
	return json.RawMessage(out), nil
}
