package main

import "github.com/Redd-Hibb/stacsos/klog"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		klog.Fatalf(1, "%v", err)
	}
}
