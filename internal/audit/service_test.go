package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestQueryWhere(t *testing.T) {
	tenantID := uuid.New()

	where, args := Query{}.where(tenantID)
	require.Equal(t, " WHERE tenant_id = $1", where)
	require.Equal(t, []interface{}{tenantID}, args)

	userID := uuid.New()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args = Query{Action: "auth.logout", UserID: &userID, StartDate: &start}.where(tenantID)
	require.Equal(t, " WHERE tenant_id = $1 AND action = $2 AND user_id = $3 AND created_at >= $4", where)
	require.Equal(t, []interface{}{tenantID, "auth.logout", userID, start}, args)
}
