/*
Package plan implements the deployment planner.

The planner observes the running replica count for an application and
selects the deployment mode: zero replicas means FreshDeploy at the
configured scale, anything else means RollingRestart over exactly the
observed count. It never mutates anything; a failed runtime query aborts
the deployment before a single container is touched; doing nothing beats
doing something wrong.
*/
package plan
