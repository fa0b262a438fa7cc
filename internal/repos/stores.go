package repos

import (
	"github.com/jmoiron/sqlx"

	"storefront/internal/services"
)

// Stores wires the sqlite repositories behind the service ports.
func Stores(db *sqlx.DB) services.Stores {
	return services.Stores{
		Accounts: NewUserRepo(db),
		Products: NewProductRepo(db),
		Orders:   NewOrderRepo(db),
		Tickets:  NewTicketRepo(db),
		Tx:       NewTxManager(db),
	}
}
