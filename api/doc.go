// Package api holds the values exchanged between an orchestrator and the
// isocheck scenario catalog: scenario parameters, decoded results and the
// error taxonomy shared by every backend adapter.
package api
