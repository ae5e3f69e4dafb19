// Copyright 2025 James Ross
package adapter

import "fmt"

// defaultBridgeDistro is the Linux subsystem distro name through which an
// adapter without a native match on the host falls back to invoking the
// backend, used when the constructor is given an empty name. The wired value
// comes from adapters.bridge_distro in internal/config (environment override
// ADAPTERS_BRIDGE_DISTRO).
const defaultBridgeDistro = "Ubuntu"

// NewCFDDriver is grounded on openfoam_adapter.py: the Allrun driver script
// convention, WSL bridge for Windows hosts, and the CFD log grammar.
func NewCFDDriver(distro string) Adapter {
	if distro == "" {
		distro = defaultBridgeDistro
	}
	return &baseAdapter{
		name:         "cfd-driver",
		envVar:       "CFD_CMD",
		defaultExe:   "bash",
		useBridge:    true,
		bridgeDistro: distro,
		skeletonName: "Allrun",
		skeletonBody: "#!/bin/bash\nset -e\necho \"cfd-driver skeleton: no solver wired\"\n",
		args:         func(workdir string) []string { return []string{"Allrun"} },
		bridgeCommand: func(exe, workdir string) string {
			return fmt.Sprintf("bash %s/Allrun", workdir)
		},
		parser: ParseCFDLog,
	}
}

// NewMDDriver is grounded on lammps_adapter.py: LAMMPS invoked with -in on
// an in.lammps deck, WSL bridge, and the MD thermo-log grammar.
func NewMDDriver(distro string) Adapter {
	if distro == "" {
		distro = defaultBridgeDistro
	}
	return &baseAdapter{
		name:         "md-driver",
		envVar:       "MD_CMD",
		defaultExe:   "lmp",
		useBridge:    true,
		bridgeDistro: distro,
		skeletonName: "in.lammps",
		skeletonBody: "# md-driver skeleton deck: no simulation wired\n",
		args:         func(workdir string) []string { return []string{"-in", "in.lammps"} },
		bridgeCommand: func(exe, workdir string) string {
			return fmt.Sprintf("cd %s && %s -in in.lammps", workdir, exe)
		},
		parser: ParseMDLog,
	}
}

// NewSU2Driver is grounded on su2_adapter.py: a thin variant with no bridge
// fallback, invoking SU2_CFD against a config.cfg skeleton.
func NewSU2Driver() Adapter {
	return &baseAdapter{
		name:         "su2-driver",
		envVar:       "SU2_CMD",
		defaultExe:   "SU2_CFD",
		useBridge:    false,
		skeletonName: "config.cfg",
		skeletonBody: "% su2-driver skeleton config: no case wired\n",
		args:         func(workdir string) []string { return []string{"config.cfg"} },
		parser:       ParseCFDLog,
	}
}

// NewCSDriver is grounded on codesaturne_adapter.py: a thin variant with no
// bridge fallback.
func NewCSDriver() Adapter {
	return &baseAdapter{
		name:         "cs-driver",
		envVar:       "CS_CMD",
		defaultExe:   "code_saturne",
		useBridge:    false,
		skeletonName: "run.cfg",
		skeletonBody: "# cs-driver skeleton config: no case wired\n",
		args:         func(workdir string) []string { return []string{"run"} },
		parser:       ParseCFDLog,
	}
}

// NewQEDriver is grounded on qe_adapter.py: Quantum ESPRESSO invoked with
// -in against a scf.in skeleton, WSL bridge, and no log parser — the
// original implementation never built a DFT output grammar, and this
// preserves the gap rather than inventing one.
func NewQEDriver(distro string) Adapter {
	if distro == "" {
		distro = defaultBridgeDistro
	}
	return &baseAdapter{
		name:         "qe-driver",
		envVar:       "QE_CMD",
		defaultExe:   "pw.x",
		useBridge:    true,
		bridgeDistro: distro,
		skeletonName: "scf.in",
		skeletonBody: "! qe-driver skeleton input: no case wired\n",
		args:         func(workdir string) []string { return []string{"-in", "scf.in"} },
		bridgeCommand: func(exe, workdir string) string {
			return fmt.Sprintf("cd %s && %s -in scf.in", workdir, exe)
		},
		parser: nil,
	}
}
