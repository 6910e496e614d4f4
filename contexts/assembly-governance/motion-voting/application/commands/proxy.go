package commands

import (
	"context"
	"log/slog"
	"strings"
	"time"

	application "agora/contexts/assembly-governance/motion-voting/application"
	"agora/contexts/assembly-governance/motion-voting/domain/entities"
	domainerrors "agora/contexts/assembly-governance/motion-voting/domain/errors"
	"agora/contexts/assembly-governance/motion-voting/ports"
)

type UpsertProxyCommand struct {
	MeetingID        string
	GiverMemberID    string
	ReceiverMemberID string
	Scope            string
}

type RevokeProxyCommand struct {
	MeetingID     string
	GiverMemberID string
	Scope         string
}

// ProxyUseCase manages delegation grants. A giver holds at most one active
// grant per scope; upserting replaces the receiver on the existing grant.
type ProxyUseCase struct {
	Proxies  ports.ProxyRepository
	Meetings ports.MeetingReader
	Audit    ports.AuditLog
	Clock    ports.Clock
	IDGen    ports.IDGenerator
	Logger   *slog.Logger
}

func (uc ProxyUseCase) Upsert(ctx context.Context, cmd UpsertProxyCommand) (entities.ProxyGrant, error) {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	giver := strings.TrimSpace(cmd.GiverMemberID)
	receiver := strings.TrimSpace(cmd.ReceiverMemberID)
	scope := normalizeScope(cmd.Scope)
	if meetingID == "" || giver == "" || receiver == "" || scope == "" {
		return entities.ProxyGrant{}, domainerrors.ErrInvalidProxyInput
	}
	if strings.EqualFold(giver, receiver) {
		return entities.ProxyGrant{}, domainerrors.ErrSelfProxyForbidden
	}

	if _, err := uc.Meetings.GetMeeting(ctx, meetingID); err != nil {
		return entities.ProxyGrant{}, err
	}

	now := uc.now()
	grant, found, err := uc.Proxies.GetGrantByGiverScope(ctx, meetingID, giver, scope)
	if err != nil {
		return entities.ProxyGrant{}, err
	}
	if found {
		grant.ReceiverMemberID = receiver
		grant.UpdatedAt = now
	} else {
		grantID, err := uc.IDGen.NewID(ctx)
		if err != nil {
			return entities.ProxyGrant{}, err
		}
		grant = entities.ProxyGrant{
			GrantID:          grantID,
			MeetingID:        meetingID,
			GiverMemberID:    giver,
			ReceiverMemberID: receiver,
			Scope:            scope,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
	}
	if err := uc.Proxies.SaveGrant(ctx, grant); err != nil {
		return entities.ProxyGrant{}, err
	}

	recordAudit(ctx, uc.Audit, logger, "proxy.granted", grant.GrantID, map[string]any{
		"meeting_id": meetingID,
		"giver":      giver,
		"receiver":   receiver,
		"scope":      scope,
	})
	logger.Info("proxy grant upserted",
		"event", "voting_proxy_upserted",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"grant_id", grant.GrantID,
		"meeting_id", meetingID,
		"giver", giver,
		"receiver", receiver,
		"scope", scope,
	)
	return grant, nil
}

// Revoke clears the receiver on the giver's grant for the scope, leaving a
// revoked grant row behind for audit.
func (uc ProxyUseCase) Revoke(ctx context.Context, cmd RevokeProxyCommand) error {
	logger := application.ResolveLogger(uc.Logger)

	meetingID := strings.TrimSpace(cmd.MeetingID)
	giver := strings.TrimSpace(cmd.GiverMemberID)
	scope := normalizeScope(cmd.Scope)
	if meetingID == "" || giver == "" || scope == "" {
		return domainerrors.ErrInvalidProxyInput
	}

	grant, found, err := uc.Proxies.GetGrantByGiverScope(ctx, meetingID, giver, scope)
	if err != nil {
		return err
	}
	if !found || !grant.Active() {
		return domainerrors.ErrProxyGrantNotFound
	}

	grant.ReceiverMemberID = ""
	grant.UpdatedAt = uc.now()
	if err := uc.Proxies.SaveGrant(ctx, grant); err != nil {
		return err
	}

	recordAudit(ctx, uc.Audit, logger, "proxy.revoked", grant.GrantID, map[string]any{
		"meeting_id": meetingID,
		"giver":      giver,
		"scope":      scope,
	})
	logger.Info("proxy grant revoked",
		"event", "voting_proxy_revoked",
		"module", "assembly-governance/motion-voting",
		"layer", "application",
		"grant_id", grant.GrantID,
		"meeting_id", meetingID,
		"giver", giver,
		"scope", scope,
	)
	return nil
}

func normalizeScope(scope string) string {
	scope = strings.TrimSpace(scope)
	if strings.EqualFold(scope, entities.ProxyScopeFull) {
		return entities.ProxyScopeFull
	}
	return scope
}

func (uc ProxyUseCase) now() time.Time {
	now := time.Now().UTC()
	if uc.Clock != nil {
		now = uc.Clock.Now().UTC()
	}
	return now
}
