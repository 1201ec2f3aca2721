package api

import (
	"net/http"
	"testing"

	"github.com/ruteri/snippet-provisioning-backend/interfaces"
	"github.com/ruteri/snippet-provisioning-backend/provision"
	"github.com/stretchr/testify/assert"
)

func TestFieldsFor(t *testing.T) {
	def := "eu"
	empty := ""
	fields := FieldsFor([]interfaces.VariableSpec{
		{Name: "hostname", Description: "Host name"},
		{Name: "region", Default: &def, TypeHint: "choice"},
		{Name: "note", Description: "Note", Default: &empty},
	})

	assert.Equal(t, []FieldDescriptor{
		{Name: "hostname", Label: "Host name", Kind: FieldText, Required: true},
		{Name: "region", Label: "region", Kind: FieldText, Initial: "eu"},
		{Name: "note", Label: "Note", Kind: FieldText},
	}, fields)

	assert.Empty(t, FieldsFor(nil))
	assert.NotNil(t, FieldsFor(nil))
}

func TestStatusCodeFor(t *testing.T) {
	tests := []struct {
		kind   provision.FailureKind
		status int
	}{
		{provision.KindStepFailure, http.StatusOK},
		{provision.KindNodeNotFound, http.StatusOK},
		{provision.KindServiceNotFound, http.StatusNotFound},
		{provision.KindMissingVariable, http.StatusUnprocessableEntity},
		{provision.KindInvalidPayload, http.StatusUnprocessableEntity},
		{provision.KindAuthFailure, http.StatusBadGateway},
		{provision.KindRemoteCall, http.StatusBadGateway},
		{provision.KindMalformedResponse, http.StatusBadGateway},
		{provision.KindTimeout, http.StatusGatewayTimeout},
		{provision.KindCatalogUnavailable, http.StatusServiceUnavailable},
		{provision.KindInvalidCatalog, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		out := provision.Outcome{Status: provision.StatusFailure, Kind: tt.kind}
		assert.Equal(t, tt.status, StatusCodeFor(out), tt.kind)
	}

	assert.Equal(t, http.StatusOK, StatusCodeFor(provision.Outcome{Status: provision.StatusSuccess}))
}
