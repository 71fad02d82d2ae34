package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) inviteCode() error {
	code, err := cli.usrSvc.GenerateInviteCode(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("Invite code: %s\n", code.Code)
	return nil
}
