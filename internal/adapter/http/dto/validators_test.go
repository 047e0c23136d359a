package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindingValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)
	return v
}

func TestAddressValidator(t *testing.T) {
	v := bindingValidator(t)

	type payload struct {
		Address string `binding:"address" validate:"address"`
	}

	valid := []string{
		"0xcccccccccccccccccccccccccccccccccccccccc",
		"0xAbCdEf0123456789abcdef0123456789ABCDEF01",
	}
	for _, addr := range valid {
		assert.NoError(t, v.Struct(payload{Address: addr}), addr)
	}

	invalid := []string{
		"",
		"0x",
		"cccccccccccccccccccccccccccccccccccccccc",     // missing prefix
		"0xccccccccccccccccccccccccccccccccccccccc",    // 39 hex chars
		"0xccccccccccccccccccccccccccccccccccccccccc",  // 41 hex chars
		"0xgggggggggggggggggggggggggggggggggggggggg",   // non-hex
		"0x cccccccccccccccccccccccccccccccccccccccc ", // whitespace
	}
	for _, addr := range invalid {
		assert.Error(t, v.Struct(payload{Address: addr}), addr)
	}
}

func TestSafeRefValidator(t *testing.T) {
	v := bindingValidator(t)

	type payload struct {
		Ref string `binding:"safe_ref" validate:"safe_ref"`
	}

	assert.NoError(t, v.Struct(payload{Ref: "DEP-2026.001_a"}))
	assert.Error(t, v.Struct(payload{Ref: "DEP 001"}))
	assert.Error(t, v.Struct(payload{Ref: "<script>"}))
	assert.Error(t, v.Struct(payload{Ref: "ref;drop"}))
}

func TestSanitizeStruct(t *testing.T) {
	req := CashOutRequest{
		BankAccount: "  NL91ABNA0417164300  ",
		Password:    "pass<b>word</b>",
		ReferenceID: "WD-001",
	}

	SanitizeStruct(&req)

	assert.Equal(t, "NL91ABNA0417164300", req.BankAccount)
	assert.Equal(t, "pass&lt;b&gt;word&lt;/b&gt;", req.Password)
	assert.Equal(t, "WD-001", req.ReferenceID)
}

func TestSanitizeStruct_NonPointerIsNoop(t *testing.T) {
	req := CashInRequest{Target: "  0xcc  "}
	SanitizeStruct(req)
	assert.Equal(t, "  0xcc  ", req.Target)
}
