package main

import "mailboxhub/cmd/mailbox/command"

func main() {
	command.Execute()
}
