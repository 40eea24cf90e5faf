// Package control provides the sampling-based trajectory optimizers.
//
// Every [Controller] owns a nominal control sequence (the mean of [Params]),
// perturbs it with Gaussian noise, rolls the candidates out through a
// [rollout.Evaluator] and reduces the costs to a new mean:
//
//   - [PredictiveSampling]: keep the best candidate verbatim
//   - [MPPI]: exponentially weighted average of all candidates
//
// Candidate 0 is always the unperturbed mean, so predictive sampling never
// does worse than replaying the previous plan.
//
// # Usage
//
//	ps, _ := control.NewPredictiveSampling(pendulum, control.Config{NumSamples: 32, NoiseLevel: 0.1})
//	params := ps.InitParams()
//	for i := 0; i < 100; i++ {
//	    params, rollouts, err = ps.Optimize(ctx, state, params)
//	}
//
// Params are values: every call returns a new one and never mutates its input.
package control
