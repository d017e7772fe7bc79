package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nebari-dev/taskboard/internal/audit"
	"github.com/nebari-dev/taskboard/internal/models"
	"github.com/nebari-dev/taskboard/internal/rbac"
	"gorm.io/gorm"
)

// InstanceService reads and changes the settings of this installation.
type InstanceService struct {
	*base
}

// Get returns the instance identity and settings. Any user who can read
// their own profile can read them.
func (s *InstanceService) Get(ctx context.Context, actorID uuid.UUID) (*Instance, error) {
	if err := s.requireGlobal(ctx, actorID, rbac.PermProfileRead); err != nil {
		return nil, err
	}

	id, ok, err := s.store.Setting(ctx, models.ServerConfigKeyInstanceID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("instance ID not initialized, run migrate first")
	}
	inst := &Instance{ID: id}
	if inst.Name, _, err = s.store.Setting(ctx, models.ServerConfigKeyInstanceName); err != nil {
		return nil, err
	}
	if inst.AdministratorEmail, _, err = s.store.Setting(ctx, models.ServerConfigKeyAdminEmail); err != nil {
		return nil, err
	}
	return inst, nil
}

// Update changes the instance name or administrator email.
func (s *InstanceService) Update(ctx context.Context, actorID uuid.UUID, req UpdateInstanceRequest) (*Instance, error) {
	if err := s.requireGlobal(ctx, actorID, rbac.PermInstanceUpdate); err != nil {
		return nil, err
	}

	settings := map[string]string{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, &ValidationError{Message: "instance name is required"}
		}
		settings[models.ServerConfigKeyInstanceName] = name
	}
	if req.AdministratorEmail != nil {
		email, err := normalizeEmail(*req.AdministratorEmail)
		if err != nil {
			return nil, err
		}
		settings[models.ServerConfigKeyAdminEmail] = email
	}

	if len(settings) > 0 {
		err := s.transaction(ctx, func(tx *gorm.DB) error {
			st := s.store.WithTx(tx)
			for key, value := range settings {
				if err := st.PutSetting(ctx, key, value); err != nil {
					return err
				}
			}
			return audit.Log(tx, actorID, audit.ActionUpdateInstance, "instance", settings)
		})
		if err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, actorID)
}
