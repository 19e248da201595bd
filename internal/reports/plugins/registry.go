package plugins

import "github.com/finresearch/orchestrator/internal/reports"

// NewRegistry constructs every report type's Plugin against one shared
// Deps bundle, for cmd/server's DI wiring to hand to
// reports.NewOrchestrator directly.
func NewRegistry(deps reports.Deps) reports.Registry {
	registry := reports.Registry{}
	for _, plugin := range []reports.Plugin{
		NewCitadelTechnical(deps.MD),
		NewGoldmanScreener(deps.MD, deps.Finviz),
		NewBlackrockPortfolioReview(deps.MD),
		NewMorganStanleyWealth(deps.MD, deps.Finviz),
		NewJPMorganEarningsPreview(deps.MD, deps.Finviz),
		NewBridgewaterMacro(deps.FRED),
		NewRenaissanceQuantSignals(deps.MD),
		NewTwoSigmaRisk(deps.MD),
		NewVanguardDividendSafety(deps.MD, deps.Finviz),
		NewArkInnovationThematic(deps.MD, deps.Tavily),
	} {
		registry[plugin.ReportType()] = plugin
	}
	return registry
}
