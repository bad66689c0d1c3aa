package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatewarden/gatewarden/internal/acl"
)

type stubResolver struct {
	result acl.Resolution
	fields []acl.FieldGrant
	err    error
}

func (s stubResolver) Resolve(ctx context.Context, q acl.Query) (acl.Resolution, error) {
	if s.err != nil {
		return acl.Resolution{}, s.err
	}
	res := s.result
	res.Identity = q.Identity
	return res, nil
}

func (s stubResolver) FieldPermissions(ctx context.Context, id acl.Identity, class, objectID string, calculated bool) ([]acl.FieldGrant, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.fields, nil
}

func TestResolveCommandJSONSuccess(t *testing.T) {
	resolver := stubResolver{result: acl.Resolution{
		Mask:   acl.MaskOf(acl.View, acl.Edit),
		Rights: []string{"VIEW", "EDIT"},
	}}
	cli, err := NewRightsCLI(resolver)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ResolveCommand(context.Background(), RightsOptions{
		Identity:   "user:alice",
		Class:      "Document",
		ObjectID:   "42",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, exitCode)
	require.Empty(t, stderr.String())

	var summary RightsSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Equal(t, "user:alice", summary.Identity)
	require.Equal(t, []string{"VIEW", "EDIT"}, summary.Rights)
	require.Equal(t, uint32(acl.MaskOf(acl.View, acl.Edit)), summary.Mask)
}

func TestResolveCommandNoRights(t *testing.T) {
	cli, err := NewRightsCLI(stubResolver{})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	exitCode := cli.ResolveCommand(context.Background(), RightsOptions{
		Identity: "user:bob",
		Class:    "Document",
		Stdout:   stdout,
		Stderr:   stderr,
	})
	require.Equal(t, 10, exitCode)
	require.Contains(t, stdout.String(), "(none)")
}

func TestResolveCommandAllFields(t *testing.T) {
	resolver := stubResolver{fields: []acl.FieldGrant{
		{Field: "title", Rights: []string{"VIEW"}},
		{Field: "body", Rights: nil},
	}}
	cli, err := NewRightsCLI(resolver)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.ResolveCommand(context.Background(), RightsOptions{
		Identity:   "user:alice",
		Class:      "Document",
		AllFields:  true,
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Zero(t, exitCode)

	var summary RightsSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.Len(t, summary.Fields, 2)
	require.Equal(t, "title", summary.Fields[0].Field)
}

func TestResolveCommandInvalidIdentity(t *testing.T) {
	cli, err := NewRightsCLI(stubResolver{})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.ResolveCommand(context.Background(), RightsOptions{
		Identity: "alice",
		Class:    "Document",
		Stdout:   new(bytes.Buffer),
		Stderr:   stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "invalid identity")
}

func TestResolveCommandMissingClass(t *testing.T) {
	cli, err := NewRightsCLI(stubResolver{})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	exitCode := cli.ResolveCommand(context.Background(), RightsOptions{
		Identity: "user:alice",
		Stdout:   new(bytes.Buffer),
		Stderr:   stderr,
	})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "--class is required")
}

func TestResolveCommandGroupForcesCalculated(t *testing.T) {
	resolver := stubResolver{result: acl.Resolution{Calculated: true, Rights: []string{"VIEW"}}}
	cli, err := NewRightsCLI(resolver)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	exitCode := cli.ResolveCommand(context.Background(), RightsOptions{
		Identity:   "group:auditors",
		Class:      "Document",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     new(bytes.Buffer),
	})
	require.Zero(t, exitCode)

	var summary RightsSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	require.True(t, summary.Calculated)
}
