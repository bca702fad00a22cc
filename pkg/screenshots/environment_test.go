package screenshots

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectEnvironmentPopulatesFields(t *testing.T) {
	env := DetectEnvironment()
	assert.NotEmpty(t, env.Provider)
	assert.NotEmpty(t, env.Permission)
	assert.NotEmpty(t, env.Message)
}
