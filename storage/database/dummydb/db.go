// Package dummydb provides in-memory repositories backing the test suites;
// no running database is needed.
package dummydb

import (
	"sync"

	"github.com/trezcool/maktaba/core/article"
	"github.com/trezcool/maktaba/core/user"
)

type (
	DB struct {
		user    *userTable
		article *articleTable
	}

	userTable struct {
		sync.RWMutex
		table   map[string]*user.User
		invites map[string]*user.InviteCode
	}

	articleTable struct {
		sync.RWMutex
		table map[string]*article.Article
		seq   int // creation order
		order map[string]int
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{
			table:   make(map[string]*user.User),
			invites: make(map[string]*user.InviteCode),
		},
		article: &articleTable{
			table: make(map[string]*article.Article),
			order: make(map[string]int),
		},
	}
	return db, nil
}
