//go:build windows

package wincim

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// EnableBuildPrivileges enables SeBackupPrivilege and SeSecurityPrivilege on
// the current process token. Capturing source metadata with backup semantics
// and reading SACLs both require them; without these the build fails on the
// first object.
func EnableBuildPrivileges() error {
	for _, name := range []string{"SeBackupPrivilege", "SeSecurityPrivilege"} {
		if err := enablePrivilege(name); err != nil {
			return fmt.Errorf("enable %s: %w", name, err)
		}
	}
	return nil
}

func enablePrivilege(name string) error {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(),
		windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return err
	}
	defer token.Close()

	nameP, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}

	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, nameP, &luid); err != nil {
		return err
	}

	tp := windows.Tokenprivileges{
		PrivilegeCount: 1,
		Privileges: [1]windows.LUIDAndAttributes{{
			Luid:       luid,
			Attributes: windows.SE_PRIVILEGE_ENABLED,
		}},
	}

	err = windows.AdjustTokenPrivileges(token, false, &tp,
		uint32(unsafe.Sizeof(tp)), nil, nil)
	if err != nil {
		return err
	}
	// AdjustTokenPrivileges succeeds even when nothing was assigned.
	if lastErr := windows.GetLastError(); lastErr == windows.ERROR_NOT_ALL_ASSIGNED {
		return lastErr
	}
	return nil
}
