// Package bootstrap runs a finite task inside a uniform lifecycle: typed
// configuration, logger initialisation, component start, the task itself,
// then component shutdown.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(storageComponent)
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := executor.Run(ctx, graph)
//	    return err
//	})
//
// SIGINT and SIGTERM cancel the task's context; components are stopped in
// reverse registration order within the graceful timeout.
package bootstrap
