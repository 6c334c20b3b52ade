package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := map[string]string{
		"Wireless Headphones":  "wireless-headphones",
		"  Hello   World!  ":   "hello-world",
		"Crème Brûlée Set":     "creme-brulee-set",
		"Men's T-Shirt (XL)":   "men-s-t-shirt-xl",
		"---":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Generate(in), in)
	}
}
