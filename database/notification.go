/*
Copyright 2024 Custodia Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/custodia-finance/custodia/internal/apierror"
	"github.com/custodia-finance/custodia/model"
)

// InsertNotification records a user-facing notification.
func (d Datasource) InsertNotification(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	dataJSON, err := json.Marshal(n.Data)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal notification data", err)
	}

	n.NotificationID = model.GenerateUUIDWithSuffix("ntf")
	n.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO custodia.notifications (notification_id, account_id, category, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, n.NotificationID, n.AccountID, n.Category, n.Title, n.Message, dataJSON, n.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record notification", err)
	}

	return n, nil
}

// InsertAlert records an operational alert raised by the network monitor.
func (d Datasource) InsertAlert(ctx context.Context, a *model.Alert) (*model.Alert, error) {
	a.AlertID = model.GenerateUUIDWithSuffix("alt")
	a.CreatedAt = time.Now()

	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO custodia.alerts (alert_id, network_id, severity, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, a.AlertID, a.NetworkID, a.Severity, a.Message, a.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record alert", err)
	}

	return a, nil
}

// GetAlerts retrieves recent alerts, optionally filtered by network.
func (d Datasource) GetAlerts(ctx context.Context, networkID string, limit, offset int) ([]model.Alert, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT alert_id, network_id, severity, message, created_at
		FROM custodia.alerts
		WHERE ($1 = '' OR network_id = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, networkID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve alerts", err)
	}
	defer rows.Close()

	alerts := []model.Alert{}

	for rows.Next() {
		alert := model.Alert{}
		err = rows.Scan(&alert.AlertID, &alert.NetworkID, &alert.Severity, &alert.Message, &alert.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan alert data", err)
		}
		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating alerts", err)
	}

	return alerts, nil
}
