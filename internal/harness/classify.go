package harness

// Classify reconciles the effective mode of a test with its raw result.
//
//	mode   success  failure  fault  skipped
//	PASS   PASS     FAIL     FAIL   SKIP
//	XFAIL  XPASS    XFAIL    FAIL   SKIP
//	SKIP   SKIP     (body is never called)
func Classify(mode Mode, raw RawResult) Verdict {
	if mode == ModeSkip {
		return VerdictSkip
	}

	switch raw.Outcome {
	case OutcomeSkipped:
		return VerdictSkip
	case OutcomeFault:
		return VerdictFail
	case OutcomeFailure:
		if mode == ModeXFail {
			return VerdictXFail
		}
		return VerdictFail
	default:
		if mode == ModeXFail {
			return VerdictXPass
		}
		return VerdictPass
	}
}
