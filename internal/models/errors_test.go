package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeployErrorFormatting(t *testing.T) {
	err := NewError(ErrMissingArchive, "kafka", "archive %s not present", "kafka-2.7.0.tgz")
	require.Equal(t, "[MissingArchive] kafka: archive kafka-2.7.0.tgz not present", err.Error())

	noPkg := &DeployError{Type: ErrInvalidConfig, Err: errors.New("user is empty")}
	require.Equal(t, "[InvalidConfig] user is empty", noPkg.Error())
}

func TestIsTypeFollowsWrappedChain(t *testing.T) {
	inner := NewError(ErrCommandFailed, "", "exit status 3")
	outer := &DeployError{Type: ErrInstallFailed, Package: "airflow", Err: fmt.Errorf("pip install: %w", inner)}
	wrapped := fmt.Errorf("deploy: %w", outer)

	require.True(t, IsType(wrapped, ErrInstallFailed))
	require.True(t, IsType(wrapped, ErrCommandFailed))
	require.False(t, IsType(wrapped, ErrNotFound))
	require.False(t, IsType(errors.New("plain"), ErrNotFound))
	require.False(t, IsType(nil, ErrNotFound))
}
