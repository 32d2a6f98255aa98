package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ConnectionInput carries the writable fields of a connection.
type ConnectionInput struct {
	Name         string         `json:"name"`
	Organization string         `json:"organization"`
	BaseURL      string         `json:"baseUrl"`
	Token        string         `json:"patToken"`
	Type         ConnectionType `json:"type"`
}

// Validate checks required fields and fills defaults.
func (in *ConnectionInput) Validate() error {
	in.Organization = strings.TrimSpace(in.Organization)
	if in.Organization == "" {
		return fmt.Errorf("%w: organization is required", ErrInvalid)
	}
	if in.Type == "" {
		in.Type = ConnectionSource
	}
	if in.Type != ConnectionSource && in.Type != ConnectionTarget {
		return fmt.Errorf("%w: connection type must be %q or %q", ErrInvalid, ConnectionSource, ConnectionTarget)
	}
	if in.Name == "" {
		in.Name = in.Organization
	}
	if in.BaseURL == "" {
		in.BaseURL = "https://dev.azure.com/" + in.Organization
	}
	return nil
}

// SaveConnection creates the connection for (organization, type) or updates
// the existing one, reactivating it. An empty token keeps the stored one, but
// a new connection needs a token.
func (s *Store) SaveConnection(ctx context.Context, in ConnectionInput) (*Connection, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	sealed, err := s.box.Seal(in.Token)
	if err != nil {
		return nil, err
	}

	var out Connection
	save := func(tx *gorm.DB) error {
		err := tx.Where("organization = ? AND type = ?", in.Organization, in.Type).Take(&out).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if in.Token == "" {
				return fmt.Errorf("%w: patToken is required for a new connection", ErrInvalid)
			}
			out = Connection{
				Name:         in.Name,
				Organization: in.Organization,
				BaseURL:      in.BaseURL,
				Token:        sealed,
				Type:         in.Type,
				IsActive:     true,
			}
			return tx.Create(&out).Error
		case err != nil:
			return err
		}
		updates := map[string]any{"name": in.Name, "base_url": in.BaseURL, "is_active": true}
		if in.Token != "" {
			updates["pat_token"] = sealed
		}
		return tx.Model(&out).Updates(updates).Error
	}

	err = s.conn(ctx).Transaction(save)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent save created the row first; this pass updates it.
		err = s.conn(ctx).Transaction(save)
	}
	if err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}
	return &out, nil
}

// UpdateConnection replaces the writable fields of connection id.
func (s *Store) UpdateConnection(ctx context.Context, id uint, in ConnectionInput) (*Connection, error) {
	current, err := s.GetConnection(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Organization == "" {
		in.Organization = current.Organization
	}
	if in.Type == "" {
		in.Type = current.Type
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"name":         in.Name,
		"organization": in.Organization,
		"base_url":     in.BaseURL,
		"type":         in.Type,
	}
	if in.Token != "" {
		sealed, err := s.box.Seal(in.Token)
		if err != nil {
			return nil, err
		}
		updates["pat_token"] = sealed
	}
	if err := s.conn(ctx).Model(current).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update connection: %w", err)
	}
	return s.GetConnection(ctx, id)
}

// GetConnection retrieves a connection by id.
func (s *Store) GetConnection(ctx context.Context, id uint) (*Connection, error) {
	var c Connection
	if err := s.conn(ctx).Take(&c, id).Error; err != nil {
		return nil, notFound(err, "connection", id)
	}
	return &c, nil
}

// ListConnections returns connections, newest first. Inactive ones are
// included only on request.
func (s *Store) ListConnections(ctx context.Context, includeInactive bool) ([]Connection, error) {
	q := s.conn(ctx).Order("id DESC")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	out := []Connection{}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	return out, nil
}

// LatestActiveConnection returns the most recently created active source
// connection.
func (s *Store) LatestActiveConnection(ctx context.Context) (*Connection, error) {
	var c Connection
	err := s.conn(ctx).Where("is_active = ? AND type = ?", true, ConnectionSource).Order("id DESC").Take(&c).Error
	if err != nil {
		return nil, notFound(err, "active connection", "")
	}
	return &c, nil
}

// DeactivateConnection marks a connection inactive.
func (s *Store) DeactivateConnection(ctx context.Context, id uint) error {
	res := s.conn(ctx).Model(&Connection{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("connection %d: %w", id, ErrNotFound)
	}
	return nil
}

// Token returns the usable access token of c.
func (s *Store) Token(c *Connection) (string, error) {
	return s.box.Open(c.Token)
}
