package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gatewarden/gatewarden/internal/acl"
)

// PermissionResolver is the slice of the engine the rights command uses.
type PermissionResolver interface {
	Resolve(ctx context.Context, q acl.Query) (acl.Resolution, error)
	FieldPermissions(ctx context.Context, id acl.Identity, class, objectID string, calculated bool) ([]acl.FieldGrant, error)
}

// RightsCLI offers operational helpers to inspect resolved permissions.
type RightsCLI struct {
	resolver PermissionResolver
}

// NewRightsCLI constructs a new helper instance.
func NewRightsCLI(resolver PermissionResolver) (*RightsCLI, error) {
	if resolver == nil {
		return nil, errors.New("rights cli: resolver is required")
	}
	return &RightsCLI{resolver: resolver}, nil
}

// RightsOptions defines available flags for the rights command.
type RightsOptions struct {
	Identity   string
	Class      string
	ObjectID   string
	Field      string
	Calculated bool
	AllFields  bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// RightsSummary describes the JSON response for the rights command.
type RightsSummary struct {
	Identity   string              `json:"identity"`
	Class      string              `json:"class"`
	ObjectID   string              `json:"object_id,omitempty"`
	Field      string              `json:"field,omitempty"`
	Calculated bool                `json:"calculated"`
	Mask       uint32              `json:"mask"`
	Rights     []string            `json:"rights"`
	Fields     []RightsFieldResult `json:"fields,omitempty"`
}

// RightsFieldResult reports the rights resolved for one field.
type RightsFieldResult struct {
	Field  string   `json:"field"`
	Rights []string `json:"rights"`
}

// ResolveCommand executes a permission query and prints the outcome.
// It returns 0 when rights were resolved, 10 when the query resolved to
// no rights, and 1 on usage or resolution errors.
func (c *RightsCLI) ResolveCommand(ctx context.Context, opts RightsOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if strings.TrimSpace(opts.Class) == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "rights: --class is required")
		return 1
	}
	id, err := acl.ParseIdentity(strings.TrimSpace(opts.Identity))
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "rights: invalid identity %q (expected kind:name)\n", opts.Identity)
		return 1
	}

	summary := RightsSummary{
		Identity:   id.String(),
		Class:      opts.Class,
		ObjectID:   opts.ObjectID,
		Field:      opts.Field,
		Calculated: opts.Calculated || id.Kind == acl.KindGroup,
	}

	if opts.AllFields {
		grants, err := c.resolver.FieldPermissions(ctx, id, opts.Class, opts.ObjectID, opts.Calculated)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rights: %v\n", err)
			return 1
		}
		for _, g := range grants {
			summary.Fields = append(summary.Fields, RightsFieldResult{Field: g.Field, Rights: g.Rights})
		}
	} else {
		res, err := c.resolver.Resolve(ctx, acl.Query{
			Identity:   id,
			Class:      opts.Class,
			ObjectID:   opts.ObjectID,
			Field:      opts.Field,
			Calculated: opts.Calculated,
		})
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rights: %v\n", err)
			return 1
		}
		summary.Calculated = res.Calculated
		summary.Mask = uint32(res.Mask)
		summary.Rights = res.Rights
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "rights: encode json: %v\n", err)
			return 1
		}
	} else {
		renderRightsHuman(opts.Stdout, summary)
	}

	if opts.AllFields {
		for _, f := range summary.Fields {
			if len(f.Rights) > 0 {
				return 0
			}
		}
		return 10
	}
	if len(summary.Rights) == 0 {
		return 10
	}
	return 0
}

func renderRightsHuman(w io.Writer, summary RightsSummary) {
	target := summary.Class
	if summary.ObjectID != "" {
		target += "/" + summary.ObjectID
	}
	if summary.Field != "" {
		target += "#" + summary.Field
	}
	mode := "stored"
	if summary.Calculated {
		mode = "calculated"
	}
	if summary.Fields != nil {
		_, _ = fmt.Fprintf(w, "%s on %s (%s):\n", summary.Identity, target, mode)
		for _, f := range summary.Fields {
			rights := strings.Join(f.Rights, ", ")
			if rights == "" {
				rights = "(none)"
			}
			_, _ = fmt.Fprintf(w, "  %s: %s\n", f.Field, rights)
		}
		return
	}
	rights := strings.Join(summary.Rights, ", ")
	if rights == "" {
		rights = "(none)"
	}
	_, _ = fmt.Fprintf(w, "%s on %s (%s): %s [mask 0x%x]\n", summary.Identity, target, mode, rights, summary.Mask)
}
