package main

import "github.com/samsaffron/wazuh-chat/cmd"

func main() {
	cmd.Execute()
}
