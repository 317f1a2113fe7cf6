// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"fmt"

	"github.com/pipit-lang/pipit/internal/sched"
)

// certify is spec §4.3.9's postcondition certificate: R1 every scheduled
// task has a matching LirTask, R2 every actor firing names a concrete C++
// type. A failing certificate is a builder bug, not a user error.
func certify(scheduled *sched.ScheduledProgram, prog *LirProgram) LirCert {
	cert := LirCert{OK: true}

	byName := make(map[string]*LirTask, len(prog.Tasks))
	for i := range prog.Tasks {
		byName[prog.Tasks[i].Name] = &prog.Tasks[i]
	}
	for _, name := range scheduled.TaskOrder {
		if _, ok := byName[name]; !ok {
			cert.OK = false
			cert.Failures = append(cert.Failures, fmt.Sprintf("R1: scheduled task %q has no matching LirTask", name))
		}
	}

	for _, task := range prog.Tasks {
		forEachSubgraph(task.Body, func(label string, sg LirSubgraph) {
			forEachFiring(sg.Firings, func(f LirFiring) {
				if f.Kind == LirFireActor && f.CppName == "" {
					cert.OK = false
					cert.Failures = append(cert.Failures, fmt.Sprintf(
						"R2: task %q %s firing of node %s has no concrete C++ type", task.Name, label, f.NodeID))
				}
			})
		})
	}
	return cert
}

func forEachSubgraph(body LirTaskBody, fn func(label string, sg LirSubgraph)) {
	switch body.Kind {
	case LirBodyPipeline:
		fn("pipeline", body.Pipeline)
	case LirBodyModal:
		fn("control", body.Control)
		for _, m := range body.Modes {
			fn(m.Name, m.Subgraph)
		}
	}
}

func forEachFiring(groups []LirFiringGroup, fn func(LirFiring)) {
	for _, g := range groups {
		switch g.Kind {
		case LirGroupSingle:
			fn(g.Single)
		case LirGroupFused:
			for _, f := range g.Fused.Body {
				fn(f)
			}
		}
	}
}
