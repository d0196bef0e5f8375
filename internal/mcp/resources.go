package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/smarthr/internal/store"
)

const (
	// StatusURI is the index status resource.
	StatusURI = "smarthr://index/status"

	// PolicyURITemplate addresses one passage by policy and section.
	PolicyURITemplate = "policy://{policy_id}/{section}"

	policyScheme = "policy://"
)

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "index_status",
			URI:         StatusURI,
			Description: "Load state and settings of the policy index",
			MIMEType:    "application/json",
		},
		s.readStatusResource,
	)

	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "policy_passage",
			URITemplate: PolicyURITemplate,
			Description: "One policy passage, as cited in search results",
			MIMEType:    "text/markdown",
		},
		s.readPolicyResource,
	)
}

func (s *Server) readStatusResource(_ context.Context, _ *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(s.handleIndexStatus(), "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: StatusURI, MIMEType: "application/json", Text: string(content)},
		},
	}, nil
}

func (s *Server) readPolicyResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return s.readPolicy(ctx, req.Params.URI)
}

// readPolicy resolves a policy:// URI to its passage.
func (s *Server) readPolicy(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	policyID, section, ok := parsePolicyURI(uri)
	if !ok {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid policy uri: %s", uri))
	}

	p, found, err := s.backend.Passage(ctx, policyID, section)
	if err != nil {
		return nil, MapError(err)
	}
	if !found {
		return nil, NewResourceNotFoundError(uri)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "text/markdown", Text: renderPassage(p)},
		},
	}, nil
}

// parsePolicyURI splits policy://{policy_id}/{section}. Both parts must be
// single, non-traversing path segments.
func parsePolicyURI(uri string) (policyID, section string, ok bool) {
	rest, found := strings.CutPrefix(uri, policyScheme)
	if !found {
		return "", "", false
	}
	policyID, section, found = strings.Cut(rest, "/")
	if !found || !validSegment(policyID) || !validSegment(section) {
		return "", "", false
	}
	return policyID, section, true
}

func validSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
}

func renderPassage(p store.Passage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s / %s\n\n", p.PolicyID, p.Section)
	if p.EffectiveFrom != "" || p.Region != "" {
		fmt.Fprintf(&sb, "_Region: %s. Effective from: %s._\n\n", orNA(p.Region), orNA(p.EffectiveFrom))
	}
	sb.WriteString(strings.TrimSpace(p.Text))
	sb.WriteString("\n\nSource: ")
	sb.WriteString(p.SourceOrDefault())
	sb.WriteString("\n")
	return sb.String()
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
