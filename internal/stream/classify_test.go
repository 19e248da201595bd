package stream

import "testing"

func TestClassify_ExplicitFollowUpTakesPrecedenceOverText(t *testing.T) {
	followUp := &ReportFollowUp{ReportType: "goldman_screener", ThreadID: "thread-1", RefreshData: true}
	decision := Classify(followUp, []string{"citadel technical report for AAPL"})

	if decision.Kind != KindReportFollowUp {
		t.Fatalf("expected KindReportFollowUp, got %s", decision.Kind)
	}
	if decision.FollowUp.ReportType != "goldman_screener" || decision.FollowUp.ThreadID != "thread-1" {
		t.Fatalf("unexpected follow-up payload: %+v", decision.FollowUp)
	}
}

func TestClassify_ImplicitReportRequestExtractsTickerFromBrackets(t *testing.T) {
	decision := Classify(nil, []string{"Citadel technical report for [PLTR]"})

	if decision.Kind != KindReportRequest {
		t.Fatalf("expected KindReportRequest, got %s", decision.Kind)
	}
	if decision.ReportType != "citadel_technical" {
		t.Fatalf("expected citadel_technical, got %s", decision.ReportType)
	}
	if decision.Ticker != "PLTR" {
		t.Fatalf("expected ticker PLTR, got %q", decision.Ticker)
	}
}

func TestClassify_AnalyzeColonExtractsTicker(t *testing.T) {
	decision := Classify(nil, []string{"goldman screener analyze: msft please"})
	if decision.Ticker != "MSFT" {
		t.Fatalf("expected MSFT, got %q", decision.Ticker)
	}
}

func TestClassify_FallsBackToLastUppercaseToken(t *testing.T) {
	decision := Classify(nil, []string{"give me the vanguard dividend safety rating for KO now"})
	if decision.Ticker != "KO" {
		t.Fatalf("expected KO, got %q", decision.Ticker)
	}
}

func TestClassify_SectorKeywordDetected(t *testing.T) {
	decision := Classify(nil, []string{"run a goldman screener on the technology sector"})
	if decision.Sector != "Technology" {
		t.Fatalf("expected Technology, got %q", decision.Sector)
	}
}

func TestClassify_NoReportPatternFallsBackToChat(t *testing.T) {
	decision := Classify(nil, []string{"why did TSLA drop this past week?"})
	if decision.Kind != KindChat {
		t.Fatalf("expected KindChat, got %s", decision.Kind)
	}
}

func TestClassify_EmptyMessagesIsChat(t *testing.T) {
	decision := Classify(nil, nil)
	if decision.Kind != KindChat {
		t.Fatalf("expected KindChat, got %s", decision.Kind)
	}
}

func TestClassify_InstitutionPatternsAreCheckedBeforeGenericScreener(t *testing.T) {
	decision := Classify(nil, []string{"goldman screener for energy names"})
	if decision.ReportType != "goldman_screener" {
		t.Fatalf("expected goldman_screener, got %s", decision.ReportType)
	}
}
