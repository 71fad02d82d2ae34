package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/maktaba/core/article"
	"github.com/trezcool/maktaba/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles, groups []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		Groups:    groups,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateArticle(
	t *testing.T,
	repo article.Repository,
	title, level, groupID string,
	restrictedTo, individualAccess []string,
) article.Article {
	t.Helper()

	now := time.Now().UTC()
	if level == "" {
		level = article.LevelBeginner
	}
	art := article.Article{
		Title:             title,
		PublicTitle:       title,
		ShortDescription:  title + " description",
		PublicDescription: title + " description",
		Level:             level,
		GroupID:           groupID,
		Keywords:          []string{},
		References:        []string{},
		RestrictedTo:      restrictedTo,
		IndividualAccess:  individualAccess,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if art.RestrictedTo == nil {
		art.RestrictedTo = []string{}
	}
	if art.IndividualAccess == nil {
		art.IndividualAccess = []string{}
	}
	art, err := repo.CreateArticle(context.Background(), art)
	if err != nil {
		t.Fatalf("CreateArticle() failed: %v", err)
	}
	return art
}
