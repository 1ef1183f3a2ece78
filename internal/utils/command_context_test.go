package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/githubsh/internal/utils"
)

func TestCommandContextAccessorRoundTrip(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	_, configurationAvailable := accessor.ConfigurationFilePath(context.Background())
	require.False(testInstance, configurationAvailable)

	executionContext := accessor.WithConfigurationFilePath(nil, "/work/.githubsh.yaml")
	executionContext = accessor.WithProjectRoot(executionContext, "/work")

	configurationFilePath, configurationAvailable := accessor.ConfigurationFilePath(executionContext)
	require.True(testInstance, configurationAvailable)
	require.Equal(testInstance, "/work/.githubsh.yaml", configurationFilePath)

	projectRoot, projectRootAvailable := accessor.ProjectRoot(executionContext)
	require.True(testInstance, projectRootAvailable)
	require.Equal(testInstance, "/work", projectRoot)
}
