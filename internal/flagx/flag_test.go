package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-d", "-b"}
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "separate value", args: []string{"-d", "/tmp/v", "-x", "1"}, want: []string{"-d", "/tmp/v"}},
		{name: "equals form", args: []string{"-b=s3", "-l=debug"}, want: []string{"-b=s3"}},
		{name: "order kept", args: []string{"-b", "file", "-d=/a"}, want: []string{"-b", "file", "-d=/a"}},
		{name: "unknown only", args: []string{"-x", "1", "positional"}, want: []string{}},
		{name: "dangling flag", args: []string{"-d"}, want: []string{"-d"}},
		{name: "next looks like flag", args: []string{"-d", "-b"}, want: []string{"-d", "-b"}},
		{name: "equals value with dashes", args: []string{"-d=--odd"}, want: []string{"-d=--odd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, allowed))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "a.json", ConfigPath([]string{"-d", "/x", "-c", "a.json"}))
	assert.Equal(t, "b.json", ConfigPath([]string{"-config=b.json"}))
	assert.Equal(t, "c.json", ConfigPath([]string{"--config", "c.json"}))
	assert.Equal(t, "", ConfigPath([]string{"-d", "/x"}))
}
