// Package inmemdb is a process-local account store backing tests and the `memory` database engine.
package inmemdb

import (
	"sync"

	"github.com/learnlink/backend/core/account"
)

type (
	DB struct {
		account *accountTable
	}

	// accountTable keeps its unique indexes in step with table under the same lock.
	accountTable struct {
		sync.RWMutex
		table        map[string]*account.Account // {id: account}
		byEmail      map[string]string           // {email: id}
		byIdentifier map[string]string           // {identifier: id}
	}
)

func Open() *DB {
	return &DB{
		account: &accountTable{
			table:        make(map[string]*account.Account),
			byEmail:      make(map[string]string),
			byIdentifier: make(map[string]string),
		},
	}
}
