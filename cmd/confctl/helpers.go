package main

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	"github.com/nimbusvm/clusterconf/pkg/auth"
	"github.com/nimbusvm/clusterconf/pkg/clitable"
)

// unixNow returns the current time as a Unix timestamp, the same
// resolution every entity's ctime/mtime uses.
func unixNow() int64 { return time.Now().Unix() }

func currentHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return h
}

func currentUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

// defaultPolicy is the policy confctl uses for every command: the invoking
// OS user is treated as a superuser. There is no setting that loads a
// policy from a file.
func defaultPolicy() *auth.Policy {
	return &auth.Policy{
		SuperUsers: []string{currentUser()},
	}
}

// confirm prompts the user with a yes/no question on stdin, returning
// true only for an explicit "y" or "yes".
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func dashInt(v int) string {
	if v <= 0 {
		return "-"
	}
	return strconv.Itoa(v)
}

func boolMark(b bool) string {
	if b {
		return clitable.Green("yes")
	}
	return "no"
}
