package moderation

// Aggregate merges the violations found in one message into a single
// assessment. Order of discovery does not matter.
func Aggregate(violations []Violation, highSeverity int) Assessment {
	assessment := Assessment{Violations: violations}
	if highSeverity <= 0 {
		highSeverity = SeverityHigh
	}

	for _, violation := range violations {
		assessment.TotalSeverity += violation.Severity
		if _, ok := noticeKinds[violation.Kind]; ok {
			assessment.RequiresAdminNotice = true
		}
	}
	if assessment.TotalSeverity >= highSeverity {
		assessment.RequiresAdminNotice = true
	}
	return assessment
}
