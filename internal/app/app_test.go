package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCopilotApp_Initializers(t *testing.T) {
	app := NewCopilotApp()
	require.NotNil(t, app, "NewCopilotApp should not return nil")
}
