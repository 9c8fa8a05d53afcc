package twitter

import (
	"context"
	"log/slog"

	"github.com/basemint/whitelist-backend/interfaces"
)

// AutoApprove treats every authenticated identity as a follower. This is
// the deployed policy under the reduced-tier X API, where the follows
// endpoint is unavailable. Selected via --follower-policy=auto.
type AutoApprove struct{}

func (AutoApprove) IsFollowing(ctx context.Context, id interfaces.IdentityID) (bool, error) {
	return true, nil
}

// APIVerifier performs a real follow lookup against the X API: the identity
// must follow the configured target handle. Selected via
// --follower-policy=api.
type APIVerifier struct {
	client *Client
	target string
	log    *slog.Logger
}

// NewAPIVerifier creates a verifier checking follows of the target handle.
func NewAPIVerifier(client *Client, targetHandle string, log *slog.Logger) *APIVerifier {
	return &APIVerifier{client: client, target: targetHandle, log: log}
}

func (v *APIVerifier) IsFollowing(ctx context.Context, id interfaces.IdentityID) (bool, error) {
	targetID, err := v.client.userIDByHandle(ctx, v.target)
	if err != nil {
		return false, err
	}

	// Only the first page is consulted; accounts following more than 1000
	// users may need a re-follow bump to land on it.
	followingIDs, err := v.client.following(ctx, id)
	if err != nil {
		return false, err
	}

	for _, followedID := range followingIDs {
		if followedID == targetID {
			return true, nil
		}
	}

	v.log.Debug("Follow check negative", "identity", id, "target", v.target)
	return false, nil
}
