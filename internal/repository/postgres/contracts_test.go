package postgres

import (
	"github.com/rajarshidattapy/R-Credit/internal/auth"
	creditdomain "github.com/rajarshidattapy/R-Credit/internal/domain/credit"
	identitydomain "github.com/rajarshidattapy/R-Credit/internal/domain/identity"
	loandomain "github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	obligationdomain "github.com/rajarshidattapy/R-Credit/internal/domain/obligation"
	"github.com/rajarshidattapy/R-Credit/internal/jobs"
	"github.com/rajarshidattapy/R-Credit/internal/vault"
	"github.com/rajarshidattapy/R-Credit/internal/ws"
)

var (
	_ identitydomain.Repository     = (*IdentityRepository)(nil)
	_ creditdomain.Repository       = (*CreditRepository)(nil)
	_ loandomain.Repository         = (*LoanRepository)(nil)
	_ obligationdomain.Repository   = (*ObligationRepository)(nil)
	_ vault.EntryStore              = (*VaultRepository)(nil)
	_ auth.Repository               = (*SessionRepository)(nil)
	_ jobs.OutboxRepository         = (*OutboxRepository)(nil)
	_ creditdomain.OutboxRepository = (*OutboxRepository)(nil)
	_ ws.NotificationRepository     = (*WSRepository)(nil)
)
