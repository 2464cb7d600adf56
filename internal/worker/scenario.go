// Package worker implements the child-process worker driver: the
// START -> AWAIT_TASK -> LINTING -> REPORTING_OK|REPORTING_ERR -> EXIT
// state machine each spawned process runs, plus the optional
// failure-injection harness used to exercise the orchestrator's
// recovery paths in tests.
package worker

// Scenario names a failure-injection behavior. Scenario("") and
// ScenarioNone are equivalent and make every injection code path
// unreachable.
type Scenario string

// Recognized failure-injection scenarios.
const (
	ScenarioNone           Scenario = "none"
	ScenarioOOMSingle      Scenario = "oom-single"
	ScenarioOOMPersistent  Scenario = "oom-persistent"
	ScenarioParseError     Scenario = "parse-error"
	ScenarioRuleCrash      Scenario = "rule-crash"
	ScenarioRandomOOM      Scenario = "random-oom"
	ScenarioSlowWorker     Scenario = "slow-worker"
	ScenarioAll            Scenario = "all"
)

// active reports whether s enables any injection behavior at all.
func (s Scenario) active() bool {
	return s != "" && s != ScenarioNone
}

// roundRobinScenarios lists the concrete scenarios resolve cycles
// through, by batch ID, when s == ScenarioAll.
var roundRobinScenarios = []Scenario{
	ScenarioOOMSingle,
	ScenarioOOMPersistent,
	ScenarioParseError,
	ScenarioRuleCrash,
	ScenarioRandomOOM,
	ScenarioSlowWorker,
}

func (s Scenario) resolve(batchID int) Scenario {
	if s != ScenarioAll {
		return s
	}

	return roundRobinScenarios[batchID%len(roundRobinScenarios)]
}
