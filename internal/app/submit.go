package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/drylab-ai/drylab/internal/drylab"
	"github.com/drylab-ai/drylab/internal/viewer"
)

// LoadJobFile reads a TOML job description:
//
//	job_name = "binder-1"
//	job_type = "rfdiffusion"
//	ligand   = "FAD"
//	contigs  = "A1-150/0 50-80"
//	pdb_data = """..."""
//
//	[[active_site_atoms]]
//	residue = "A45"
//	atoms   = "OG"
func LoadJobFile(path string) (drylab.JobRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return drylab.JobRequest{}, fmt.Errorf("read job file: %w", err)
	}
	var req drylab.JobRequest
	if err := toml.Unmarshal(data, &req); err != nil {
		return drylab.JobRequest{}, fmt.Errorf("parse job file: %w", err)
	}
	return req, nil
}

// ParseSite parses "RESIDUE:ATOMS", e.g. "A45:OG,ND1".
func ParseSite(value string) (drylab.ActiveSite, error) {
	residue, atoms, ok := strings.Cut(value, ":")
	residue, atoms = strings.TrimSpace(residue), strings.TrimSpace(atoms)
	if !ok || residue == "" {
		return drylab.ActiveSite{}, fmt.Errorf("invalid active site %q, want RESIDUE:ATOMS", value)
	}
	return drylab.ActiveSite{Residue: residue, Atoms: atoms}, nil
}

// StructureByCode fetches a public structure so it can be embedded in a job.
func StructureByCode(ctx context.Context, adapter *viewer.Adapter, code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("structure code is empty")
	}
	text, err := adapter.FetchText(ctx, viewer.RCSBURL(code))
	if err != nil {
		return "", fmt.Errorf("fetch structure %s: %w", code, err)
	}
	return text, nil
}

// Submit posts req through the gateway. Fields are sent as given.
func Submit(ctx context.Context, client *drylab.Client, req drylab.JobRequest) (drylab.SubmitResponse, error) {
	resp, err := client.SubmitJob(ctx, req)
	if err != nil {
		return drylab.SubmitResponse{}, fmt.Errorf("submit job: %w", err)
	}
	return resp, nil
}
