package handlers

import (
	"fmt"

	"vmget/catalog"
	"vmget/config"
	"vmget/internal/validation"
	"vmget/selection"
)

// CreateSessionRequest starts a session, optionally choosing an OS
type CreateSessionRequest struct {
	OS string `json:"os"`
}

// ChooseOSRequest picks the OS of a session on the OS selection page
type ChooseOSRequest struct {
	OS string `json:"os"`
}

// SelectRequest edits the options of a session. Absent fields are left
// alone; an empty release, edition or arch clears that selection.
type SelectRequest struct {
	Release   *string `json:"release,omitempty"`
	Edition   *string `json:"edition,omitempty"`
	Arch      *string `json:"arch,omitempty"`
	CPUCores  *int    `json:"cpu_cores,omitempty"`
	RAM       *uint64 `json:"ram,omitempty"`
	Directory *string `json:"directory,omitempty"`
	Name      *string `json:"name,omitempty"`
}

// StartRequest commits a session under an optional custom name
type StartRequest struct {
	Name string `json:"name"`
}

// Validate checks field formats. Whether a value exists in the catalog is
// decided by the selection itself.
func (req *SelectRequest) Validate() ValidationErrors {
	errs := ValidationErrors{}

	if req.Arch != nil && *req.Arch != "" {
		if _, err := catalog.ParseArch(*req.Arch); err != nil {
			errs.Add("arch", err.Error())
		}
	}
	if req.CPUCores != nil && *req.CPUCores < 1 {
		errs.Add("cpu_cores", "must be at least 1")
	}
	if req.RAM != nil && *req.RAM < config.MinRAM {
		errs.Add("ram", fmt.Sprintf("must be at least %d bytes", config.MinRAM))
	}
	if req.Directory != nil {
		if err := validation.ValidateRequired("directory", *req.Directory); err != nil {
			errs.Add("directory", err.Error())
		}
	}
	if req.Name != nil && *req.Name != "" {
		if err := validation.ValidateVMName(*req.Name); err != nil {
			errs.Add("name", err.Error())
		}
	}
	return errs
}

// Apply edits sel in a fixed order: release, edition and arch first, then
// resources, directory and name.
func (req *SelectRequest) Apply(sel *selection.State) error {
	if req.Release != nil {
		if err := sel.SelectRelease(*req.Release); err != nil {
			return err
		}
	}
	if req.Edition != nil {
		if err := sel.SelectEdition(*req.Edition); err != nil {
			return err
		}
	}
	if req.Arch != nil {
		var arch catalog.Arch
		if *req.Arch != "" {
			parsed, err := catalog.ParseArch(*req.Arch)
			if err != nil {
				return err
			}
			arch = parsed
		}
		if err := sel.SelectArch(arch); err != nil {
			return err
		}
	}
	if req.CPUCores != nil {
		sel.SetCPUCores(*req.CPUCores)
	}
	if req.RAM != nil {
		if err := sel.SetRAM(*req.RAM); err != nil {
			return err
		}
	}
	if req.Directory != nil {
		sel.SetDirectory(*req.Directory)
	}
	if req.Name != nil {
		sel.SetName(*req.Name)
	}
	return nil
}
