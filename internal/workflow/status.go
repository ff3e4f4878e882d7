package workflow

// Progress counts signatories by decision.
type Progress struct {
	Total    int `json:"total"`
	Signed   int `json:"signed"`
	Pending  int `json:"pending"`
	Rejected int `json:"rejected"`
}

// DeriveStatus computes the review status of a submitted document from its
// signatories. A single rejection wins over any number of approvals.
func DeriveStatus(signatories []Signatory) Status {
	p := ProgressOf(signatories)
	switch {
	case p.Rejected > 0:
		return StatusRejected
	case p.Total > 0 && p.Signed == p.Total:
		return StatusFullySigned
	case p.Signed > 0:
		return StatusPartiallySigned
	default:
		return StatusPendingApproval
	}
}

func ProgressOf(signatories []Signatory) Progress {
	p := Progress{Total: len(signatories)}
	for _, s := range signatories {
		switch s.Status {
		case SignatoryApproved:
			p.Signed++
		case SignatoryRejected:
			p.Rejected++
		default:
			p.Pending++
		}
	}
	return p
}
