package usecase

import (
	"fmt"
	"log"
	"time"

	"unibox-backend/internal/credential/repository"
	"unibox-backend/internal/platform"
	"unibox-backend/pkg/utils/crypto"
)

// Provider hands out usable platform credentials, handling decryption and
// validity checks. It is the only component that reads credential rows.
type Provider interface {
	// ValidPlatforms lists platforms the user can sync right now: credential
	// present, integration enabled, and token not expired beyond refresh.
	ValidPlatforms(userID string) ([]string, error)

	// Creds returns decrypted credentials for one platform. An expired token
	// with no refresh token yields platform.ErrNotAuthenticated; with a
	// refresh token the adapter refreshes lazily via OnTokenRefresh.
	Creds(userID, platformName string) (platform.Credentials, error)
}

type provider struct {
	repo          repository.CredentialRepository
	encryptionKey string
}

func NewProvider(repo repository.CredentialRepository, encryptionKey string) Provider {
	return &provider{repo: repo, encryptionKey: encryptionKey}
}

func (p *provider) ValidPlatforms(userID string) ([]string, error) {
	creds, err := p.repo.GetByUser(userID)
	if err != nil {
		return nil, err
	}

	var platforms []string
	for _, c := range creds {
		if !c.Enabled {
			continue
		}
		switch c.Platform {
		case platform.IMAP:
			if c.ImapServer != "" && c.ImapPassword != "" {
				platforms = append(platforms, c.Platform)
			}
		default:
			if c.AccessToken == "" {
				continue
			}
			// Expired tokens without a refresh token cannot be recovered here.
			if c.Expires() && c.TokenExpiry.Before(time.Now()) && c.RefreshToken == "" {
				continue
			}
			platforms = append(platforms, c.Platform)
		}
	}
	return platforms, nil
}

func (p *provider) Creds(userID, platformName string) (platform.Credentials, error) {
	cred, err := p.repo.GetByUserAndPlatform(userID, platformName)
	if err != nil {
		return platform.Credentials{}, err
	}
	if cred == nil || !cred.Enabled {
		return platform.Credentials{}, platform.ErrNotAuthenticated
	}

	if platformName == platform.IMAP {
		if cred.ImapServer == "" || cred.ImapPassword == "" {
			return platform.Credentials{}, platform.ErrNotAuthenticated
		}
		password, err := crypto.Decrypt(cred.ImapPassword, p.encryptionKey)
		if err != nil {
			return platform.Credentials{}, fmt.Errorf("failed to decrypt password: %w", err)
		}
		return platform.Credentials{
			Host:     cred.ImapServer,
			Port:     cred.ImapPort,
			Username: cred.ImapUsername,
			Password: password,
		}, nil
	}

	if cred.AccessToken == "" {
		return platform.Credentials{}, platform.ErrNotAuthenticated
	}

	accessToken, err := crypto.Decrypt(cred.AccessToken, p.encryptionKey)
	if err != nil {
		return platform.Credentials{}, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken := ""
	if cred.RefreshToken != "" {
		refreshToken, err = crypto.Decrypt(cred.RefreshToken, p.encryptionKey)
		if err != nil {
			return platform.Credentials{}, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
	}

	if cred.Expires() && cred.TokenExpiry.Before(time.Now()) {
		if refreshToken == "" {
			// CredentialExpired degrades to NotAuthenticated when no refresh is possible.
			return platform.Credentials{}, platform.ErrNotAuthenticated
		}
		// The adapter's token source performs the actual refresh; we just
		// signal that it must happen by passing the expired expiry through.
	}

	return platform.Credentials{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		Expiry:         cred.TokenExpiry,
		OnTokenRefresh: p.makeTokenUpdateCallback(userID, platformName),
	}, nil
}

// makeTokenUpdateCallback persists refreshed tokens so the next sync starts
// from the new token instead of refreshing again.
func (p *provider) makeTokenUpdateCallback(userID, platformName string) func(string, string, time.Time) error {
	return func(accessToken, refreshToken string, expiry time.Time) error {
		encAccess, err := crypto.Encrypt(accessToken, p.encryptionKey)
		if err != nil {
			return err
		}
		encRefresh := ""
		if refreshToken != "" {
			encRefresh, err = crypto.Encrypt(refreshToken, p.encryptionKey)
			if err != nil {
				return err
			}
		}
		if err := p.repo.UpdateTokens(userID, platformName, encAccess, encRefresh, expiry); err != nil {
			log.Printf("[Credentials] Failed to persist refreshed %s token for user %s: %v", platformName, userID, err)
			return err
		}
		return nil
	}
}
