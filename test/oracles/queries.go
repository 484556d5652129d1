package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DecoyPrefix marks accounts that only impostors ever target.
const DecoyPrefix = "decoy-"

type Oracle struct {
	Name string
	SQL  string
}

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_known_outcomes",
			SQL: `SELECT id, outcome FROM recovery_audit_events
                  WHERE outcome NOT IN ('matched','account_not_found','role_link_missing','role_link_invalid',
                                        'profile_missing','profile_incomplete','details_mismatch','dependency_fault',
                                        'validation_failed','mutation_failed','password_reset')
                     OR operation NOT IN ('verify','reset')`,
		},
		{
			Name: "O2_reset_requires_role_link",
			SQL: `SELECT e.id FROM recovery_audit_events e
                  WHERE e.outcome IN ('matched','password_reset')
                    AND NOT EXISTS (SELECT 1 FROM account_roles r WHERE r.account_id = e.account_id)`,
		},
		{
			Name: "O3_reset_requires_complete_profile",
			SQL: `SELECT e.id FROM recovery_audit_events e
                  JOIN account_roles r ON r.account_id = e.account_id
                  LEFT JOIN owners o ON o.id = r.owner_id
                  LEFT JOIN agents a ON a.id = r.agent_id
                  WHERE e.outcome IN ('matched','password_reset')
                    AND (btrim(COALESCE(o.full_name, a.full_name, '')) = ''
                         OR regexp_replace(COALESCE(o.phone, a.phone, ''), '[^0-9]', '', 'g') = '')`,
		},
		{
			Name: "O4_account_id_consistency",
			SQL: `SELECT id, outcome FROM recovery_audit_events
                  WHERE (outcome IN ('account_not_found','validation_failed') AND account_id IS NOT NULL)
                     OR (outcome IN ('matched','details_mismatch','password_reset','mutation_failed',
                                     'role_link_missing','role_link_invalid','profile_missing','profile_incomplete')
                         AND account_id IS NULL)`,
		},
		{
			Name: "O5_decoys_never_authorized",
			SQL: `SELECT e.id FROM recovery_audit_events e
                  JOIN accounts a ON a.id = e.account_id
                  WHERE a.email LIKE '` + DecoyPrefix + `%'
                    AND e.outcome IN ('matched','password_reset','mutation_failed')`,
		},
		{
			Name: "O6_no_plaintext_email",
			SQL: `SELECT id FROM recovery_audit_events
                  WHERE email_hash LIKE '%@%' OR length(email_hash) <> 64`,
		},
		{
			Name: "O7_bcrypt_hashes_only",
			SQL:  `SELECT id FROM accounts WHERE password_hash NOT LIKE '$2%'`,
		},
		{
			Name: "O8_audit_worm_guard",
			SQL: `SELECT 'missing_audit_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'recovery_audit_events_no_mutation')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
