package api

import "github.com/space-operator/spo-go/pkg/value"

type (
	// StartFlowParams starts a flow owned by the authenticated user
	StartFlowParams struct {
		Inputs        map[string]value.Value `json:"inputs"`
		PartialConfig *PartialConfig         `json:"partial_config,omitempty"`
		Environment   map[string]string      `json:"environment,omitempty"`
	}

	// PartialConfig limits a run to a subset of nodes, reusing the values
	// produced by earlier runs for the rest
	PartialConfig struct {
		OnlyNodes    []NodeID     `json:"only_nodes"`
		ValuesConfig ValuesConfig `json:"values_config"`
	}

	// ValuesConfig maps nodes to the runs their values are taken from
	ValuesConfig struct {
		Nodes        map[NodeID]FlowRunID `json:"nodes"`
		DefaultRunID *FlowRunID           `json:"default_run_id,omitempty"`
	}

	// StartFlowOutput identifies the started run
	StartFlowOutput struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
	}

	// StartFlowSharedParams starts a flow shared by another user
	StartFlowSharedParams struct {
		Inputs map[string]value.Value `json:"inputs"`
	}

	// StartFlowSharedOutput identifies the started run
	StartFlowSharedOutput struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
	}

	// StartFlowUnverifiedParams starts a public flow on behalf of a wallet
	// that has not authenticated
	StartFlowUnverifiedParams struct {
		Inputs             map[string]value.Value `json:"inputs,omitempty"`
		OutputInstructions bool                   `json:"output_instructions,omitempty"`
	}

	// StartFlowUnverifiedOutput carries the run and the token that grants
	// access to its events
	StartFlowUnverifiedOutput struct {
		FlowRunID FlowRunID `json:"flow_run_id"`
		Token     string    `json:"token"`
	}

	// StopFlowParams optionally bounds how long running nodes may take to
	// wind down
	StopFlowParams struct {
		TimeoutMillis *int64 `json:"timeout_millies,omitempty"`
	}

	// StopFlowOutput reports whether the stop was accepted
	StopFlowOutput struct {
		Success bool `json:"success"`
	}

	// ErrorResponse is the body returned by REST endpoints on failure
	ErrorResponse struct {
		Error string `json:"error"`
	}
)
