package fqn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModule(t *testing.T) {
	tests := map[string]string{
		"pkg/service.py":           "pkg.service",
		"pkg/__init__.py":          "pkg",
		"web/components/index.tsx": "web.components",
		"index.js":                 "index",
		"./main.go":                "main",
		`lib\util.ts`:              "lib.util",
	}
	for in, want := range tests {
		assert.Equal(t, want, Module(in), in)
	}
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "pkg.service.Service.run", Symbol("pkg/service.py", "Service", "run"))
	assert.Equal(t, "utils.helper", Symbol("utils.py", "", "helper"))
}

func TestLocal(t *testing.T) {
	tests := map[string]string{
		"utils.py":             "utils",
		"pkg/__init__.py":      "pkg",
		"lib/index.ts":         "lib",
		"types/api.d.ts":       "api",
		"internal/store/db.go": "store",
	}
	for in, want := range tests {
		assert.Equal(t, want, Local(in), in)
	}
}
